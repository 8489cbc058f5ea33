package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/edurag/internal/metrics"
	ingestionuc "github.com/kailas-cloud/edurag/internal/usecase/ingestion"
)

type ingestOptions struct {
	course      string
	file        string
	imageURL    string
	contentID   string
	category    string
	contentType string
	week        int
	topic       string
	language    string
	title       string
	fileURL     string
	createdBy   string
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	in := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and index one piece of course content",
		Long: `Indexes extracted text from --file (use "-" for stdin) or a single image from --image-url.
Re-ingesting the same --content-id replaces its previous chunks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, opts, in)
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.course, "course", "", "course id (required)")
	f.StringVar(&in.file, "file", "", "text file to ingest, - for stdin")
	f.StringVar(&in.imageURL, "image-url", "", "image to ingest instead of text")
	f.StringVar(&in.contentID, "content-id", "", "content id (default: file name or generated)")
	f.StringVar(&in.category, "category", "theory", "theory or lab")
	f.StringVar(&in.contentType, "content-type", "note", "slide, pdf, code, note or image")
	f.IntVar(&in.week, "week", 0, "course week (0 = none)")
	f.StringVar(&in.topic, "topic", "", "topic label")
	f.StringVar(&in.language, "language", "", "content language")
	f.StringVar(&in.title, "title", "", "display title")
	f.StringVar(&in.fileURL, "file-url", "", "public URL of the source file")
	f.StringVar(&in.createdBy, "created-by", "", "uploader id")
	_ = cmd.MarkFlagRequired("course")
	cmd.MarkFlagsMutuallyExclusive("file", "image-url")
	cmd.MarkFlagsOneRequired("file", "image-url")
	return cmd
}

func runIngest(cmd *cobra.Command, opts *rootOptions, in *ingestOptions) error {
	_, cfg, logger, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics.RegisterPipelineMetrics()
	chunks := newChunkRepo(store, cfg, logger)
	if _, err := chunks.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	emb := newEmbedders(ctx, cfg, store, logger)
	ingester := newIngester(newVectorStore(chunks, cfg, logger), emb.document, cfg, logger)

	var week *int
	if in.week > 0 {
		week = &in.week
	}

	var res ingestionuc.IngestResult
	if in.imageURL != "" {
		res, err = ingester.IngestImage(ctx, ingestionuc.ImageRequest{
			CourseID:  in.course,
			ContentID: in.contentID,
			ImageURL:  in.imageURL,
			Category:  in.category,
			Week:      week,
			Topic:     in.topic,
			Title:     in.title,
			CreatedBy: in.createdBy,
		})
	} else {
		var text string
		text, err = readInput(cmd.InOrStdin(), in.file)
		if err != nil {
			return err
		}
		contentID := in.contentID
		if contentID == "" && in.file != "-" {
			contentID = strings.TrimSuffix(filepath.Base(in.file), filepath.Ext(in.file))
		}
		res, err = ingester.IngestText(ctx, ingestionuc.IngestRequest{
			CourseID:    in.course,
			ContentID:   contentID,
			Text:        text,
			Category:    in.category,
			ContentType: in.contentType,
			Week:        week,
			Topic:       in.topic,
			Language:    in.language,
			Title:       in.title,
			FileURL:     in.fileURL,
			CreatedBy:   in.createdBy,
		})
	}
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(filepath.Clean(path))
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("input is empty")
	}
	return text, nil
}
