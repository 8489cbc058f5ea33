// Package edurag is a Go client for the edurag HTTP API.
//
// The API retrieves course-grounded context, generates theory and lab material
// from it, answers questions and searches course images.
//
//	client, _ := edurag.New("http://localhost:8080", edurag.WithAPIKey(os.Getenv("EDURAG_API_KEY")))
//	res, err := client.Retrieve(ctx, "algo-101", edurag.RetrieveRequest{Query: "graph traversal", TopK: 5})
//	if errors.Is(err, edurag.ErrNoGrounding) {
//	    // the course has nothing on this topic
//	}
//	m, _ := client.Generate(ctx, "algo-101", edurag.GenerateRequest{Topic: "BFS", Category: edurag.CategoryTheory})
package edurag
