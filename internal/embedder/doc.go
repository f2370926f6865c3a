// Package embedder turns text into unit-normalized dense vectors using a
// static token-average embedding model loaded from local disk.
//
// The model is a multilingual static-embedding model in the potion /
// model2vec family: a vocabulary of token vectors that are averaged per
// input string. There is no network access and no per-string failure
// mode; once the model loads, every string embeds.
//
// # Basic Usage
//
//	model, err := embedder.Load(embedder.DefaultModelDir())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	vecs, err := model.Embed([]string{"hello world", "goodbye"})
//	// vecs[0] has length model.Dim() and L2 norm 1 (or 0 for texts
//	// with no known tokens)
//
// # Model Directory Layout
//
// A model directory contains three files:
//
//	config.json   {"model_id", "model_version", "dim", "normalized"}
//	vocab.txt     one token per line; line number = matrix row
//	vectors.f32   V x dim little-endian float32 token matrix
//
// The directory is resolved from SEMTOOLS_MODEL_PATH, falling back to
// ~/.semtools/models/potion-multilingual-128M.
//
// # Caching
//
// Embed results are cached in a bounded LRU keyed by the SHA-256 of the
// input text, so re-embedding an unchanged corpus is cheap even before
// the workspace cache is consulted.
package embedder
