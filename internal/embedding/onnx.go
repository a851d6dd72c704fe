//go:build onnx

package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

func init() {
	newONNX = func() (Embedder, error) {
		return NewONNXEmbedder(ONNXConfig{
			ModelPath:     os.Getenv("ENGRAM_ONNX_MODEL"),
			TokenizerPath: os.Getenv("ENGRAM_ONNX_TOKENIZER"),
			LibraryPath:   os.Getenv("ENGRAM_ONNX_LIB"),
		})
	}
}

// ONNXConfig configures the local ONNX embedder.
type ONNXConfig struct {
	ModelPath     string // sentence-transformer exported to ONNX
	TokenizerPath string // HuggingFace tokenizer.json
	LibraryPath   string // onnxruntime shared library, optional
	Dims          int    // defaults to 384 (all-MiniLM-L6-v2)
	MaxSeqLen     int    // defaults to 128
}

// ONNXEmbedder runs a local sentence-embedding model through ONNX Runtime.
type ONNXEmbedder struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *wordPieceTokenizer
	dims      int
	maxSeqLen int
}

// NewONNXEmbedder loads the model and tokenizer. The one-time load happens
// here; Embed calls afterward are local and deterministic.
func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx model path is required (ENGRAM_ONNX_MODEL)")
	}
	if cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("onnx tokenizer path is required (ENGRAM_ONNX_TOKENIZER)")
	}
	if cfg.Dims == 0 {
		cfg.Dims = 384
	}
	if cfg.MaxSeqLen == 0 {
		cfg.MaxSeqLen = 128
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	tokenizer, err := loadWordPieceTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXEmbedder{
		session:   session,
		tokenizer: tokenizer,
		dims:      cfg.Dims,
		maxSeqLen: cfg.MaxSeqLen,
	}, nil
}

func (e *ONNXEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	tokens := e.tokenizer.tokenize(text)

	maxLen := e.maxSeqLen
	inputIDs := make([]int64, maxLen)
	attentionMask := make([]int64, maxLen)
	tokenTypeIDs := make([]int64, maxLen)

	inputIDs[0] = int64(e.tokenizer.clsToken)
	attentionMask[0] = 1

	n := len(tokens)
	if n > maxLen-2 {
		n = maxLen - 2
	}
	for i := 0; i < n; i++ {
		inputIDs[i+1] = tokens[i]
		attentionMask[i+1] = 1
	}
	inputIDs[n+1] = int64(e.tokenizer.sepToken)
	attentionMask[n+1] = 1

	shape := ort.NewShape(1, int64(maxLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}
	data := out.GetData()
	dims := out.GetShape()

	// [1, seq, hidden]: mean-pool attended positions. [1, hidden]: already pooled.
	switch len(dims) {
	case 2:
		if len(data) < e.dims {
			return nil, fmt.Errorf("output dims %d, want %d", len(data), e.dims)
		}
		vec := make(Vector, e.dims)
		copy(vec, data[:e.dims])
		return normalize(vec), nil
	case 3:
		hidden := int(dims[2])
		if hidden != e.dims {
			return nil, fmt.Errorf("hidden size %d, want %d", hidden, e.dims)
		}
		vec := make(Vector, hidden)
		var attended float32
		for i := 0; i < int(dims[1]); i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			off := i * hidden
			for j := 0; j < hidden; j++ {
				vec[j] += data[off+j]
			}
		}
		if attended > 0 {
			for j := range vec {
				vec[j] /= attended
			}
		}
		return normalize(vec), nil
	default:
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
}

func (e *ONNXEmbedder) Dims() int { return e.dims }

// Close releases the ONNX session.
func (e *ONNXEmbedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// --- WordPiece tokenizer ---

type wordPieceTokenizer struct {
	vocab    map[string]int
	clsToken int
	sepToken int
	unkToken int
}

func loadWordPieceTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Model.Vocab) == 0 {
		return nil, fmt.Errorf("empty vocab in %s", path)
	}

	return &wordPieceTokenizer{
		vocab:    parsed.Model.Vocab,
		clsToken: 101,
		sepToken: 102,
		unkToken: 100,
	}, nil
}

func (t *wordPieceTokenizer) tokenize(text string) []int64 {
	var tokens []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		for _, sub := range t.wordPiece(word) {
			if id, ok := t.vocab[sub]; ok {
				tokens = append(tokens, int64(id))
			} else {
				tokens = append(tokens, int64(t.unkToken))
			}
		}
	}
	return tokens
}

// wordPiece splits a word into the longest matching vocab subwords, with
// the ## continuation prefix on non-initial pieces.
func (t *wordPieceTokenizer) wordPiece(word string) []string {
	var pieces []string
	start := 0
	for start < len(word) {
		end := len(word)
		found := false
		for end > start {
			sub := word[start:end]
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := t.vocab[sub]; ok {
				pieces = append(pieces, sub)
				start = end
				found = true
				break
			}
			end--
		}
		if !found {
			pieces = append(pieces, "[UNK]")
			start++
		}
	}
	return pieces
}
