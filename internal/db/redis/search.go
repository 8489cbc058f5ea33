package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/edurag/internal/db"
	"github.com/kailas-cloud/edurag/internal/domain/vector"
)

// distanceField is the KNN distance FT.SEARCH attaches to each hit.
const distanceField = "__vector_score"

// SearchKNN returns the K nearest hashes to q.Vector, best first.
// Entry scores are cosine similarities (1 - distance).
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("knn: index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("knn: query vector is required")
	case q.K <= 0:
		return nil, errors.New("knn: k must be positive")
	}

	args := []string{q.IndexName, knnExpr(q)}
	if len(q.ReturnFields) > 0 {
		args = appendReturn(args, append(q.ReturnFields[:len(q.ReturnFields):len(q.ReturnFields)], distanceField))
	}
	args = append(args,
		"SORTBY", distanceField,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", string(vector.ToBytes(q.Vector)),
		"DIALECT", "2",
	)

	res, err := s.ftSearch(ctx, q.IndexName, args)
	if err != nil {
		return nil, err
	}
	for i := range res.Entries {
		e := &res.Entries[i]
		raw, ok := e.Fields[distanceField]
		if !ok {
			continue
		}
		delete(e.Fields, distanceField)
		if d, err := strconv.ParseFloat(raw, 64); err == nil {
			e.Score = 1 - d
		}
	}
	return res, nil
}

// SearchList returns one page of hashes matching query, in index order.
func (s *Store) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	args := []string{index, query, "LIMIT", strconv.Itoa(offset), strconv.Itoa(limit)}
	if len(fields) > 0 {
		args = appendReturn(args, fields)
	}
	args = append(args, "DIALECT", "2")
	return s.ftSearch(ctx, index, args)
}

// knnExpr renders "(<tag filter>)=>[KNN k @vector $BLOB]", with "*" when there is no filter.
func knnExpr(q *db.KNNQuery) string {
	filter := db.TagFilter(q.Tags)
	if filter == "" {
		filter = "*"
	} else {
		filter = "(" + filter + ")"
	}
	return fmt.Sprintf("%s=>[KNN %d @vector $BLOB]", filter, q.K)
}

func appendReturn(args, fields []string) []string {
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

func (s *Store) ftSearch(ctx context.Context, index string, args []string) (*db.SearchResult, error) {
	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	reply, err := s.client.Do(ctx, cmd).ToArray()
	if serverErr(err, "no such index", "unknown index name") {
		return nil, db.Wrap("FT.SEARCH", index, db.ErrIndexNotFound)
	}
	if err != nil {
		return nil, db.Wrap("FT.SEARCH", index, err)
	}
	return parseReply(reply)
}

// parseReply decodes the RESP2 reply [total, key1, [f, v, ...], key2, [...], ...].
// Malformed pairs are skipped.
func parseReply(reply []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(reply) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := reply[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("ft.search total: %w", err)
	}

	res := &db.SearchResult{Total: int(total)}
	for i := 1; i+1 < len(reply); i += 2 {
		key, err := reply[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := reply[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := make(map[string]string, len(pairs)/2)
		for j := 0; j+1 < len(pairs); j += 2 {
			name, nerr := pairs[j].ToString()
			value, verr := pairs[j+1].ToString()
			if nerr == nil && verr == nil {
				fields[name] = value
			}
		}
		res.Entries = append(res.Entries, db.SearchEntry{Key: key, Fields: fields})
	}
	return res, nil
}
