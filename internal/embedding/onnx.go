package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig locates a BERT-style sentence embedding model on disk.
type ONNXConfig struct {
	ModelPath   string
	VocabPath   string
	LibraryPath string // optional; resolved from env/common dirs when empty
	SeqLen      int
	Normalize   bool
}

// ortEnv guards process-wide runtime initialisation.
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		if !ort.IsInitialized() {
			ortEnv.err = ort.InitializeEnvironment()
		}
	})
	return ortEnv.err
}

// ONNX runs a local transformer and mean-pools its token states.
type ONNX struct {
	session    *ort.DynamicAdvancedSession
	tok        *wordPieceTokenizer
	inputNames []string
	outputName string
	pooled     bool // output is already [batch, dim]
	dim        int64
	seqLen     int
	normalize  bool
	name       string
}

// NewONNX loads the shared library, tokenizer and model.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("onnx: model path is empty")
	}
	if cfg.SeqLen <= 1 {
		cfg.SeqLen = 256
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("onnx: model file missing at %s: %w", cfg.ModelPath, err)
	}

	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = resolveSharedLibraryPath(filepath.Dir(cfg.ModelPath))
	}
	if libPath == "" {
		return nil, errors.New("onnx: onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
	}

	tok, err := loadWordPieceTokenizer(cfg.VocabPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: load tokenizer: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: read model info: %w", err)
	}
	inputNames, err := selectInputs(inputs)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, errors.New("onnx: model has no outputs")
	}
	out := outputs[0]
	dims := out.Dimensions
	var pooled bool
	var dim int64
	switch len(dims) {
	case 2:
		pooled, dim = true, dims[1]
	case 3:
		dim = dims[2]
	default:
		return nil, fmt.Errorf("onnx: expected 2D or 3D output tensor, got %v", dims)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("onnx: output embedding dim is not static: %v", dims)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: create session options: %w", err)
	}
	defer opts.Destroy()
	_ = opts.SetIntraOpNumThreads(4)
	_ = opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	return &ONNX{
		session:    session,
		tok:        tok,
		inputNames: inputNames,
		outputName: out.Name,
		pooled:     pooled,
		dim:        dim,
		seqLen:     cfg.SeqLen,
		normalize:  cfg.Normalize,
		name:       "onnx-" + strings.TrimSuffix(filepath.Base(cfg.ModelPath), filepath.Ext(cfg.ModelPath)),
	}, nil
}

func (e *ONNX) Name() string { return e.name }

// Dim reports the embedding width.
func (e *ONNX) Dim() int { return int(e.dim) }

func (e *ONNX) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Provider: e.name, Err: err}
	}
	vec, err := e.embed(text)
	if err != nil {
		return nil, &Error{Provider: e.name, Err: err}
	}
	return vec, nil
}

func (e *ONNX) embed(text string) ([]float64, error) {
	ids, mask := e.tok.encode(text, e.seqLen)
	seqLen := int64(e.seqLen)
	shape := ort.NewShape(1, seqLen)

	values := make([]ort.Value, 0, len(e.inputNames))
	for _, name := range e.inputNames {
		var data []int64
		switch name {
		case "input_ids":
			data = ids
		case "attention_mask":
			data = mask
		default:
			data = make([]int64, seqLen)
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("create %s tensor: %w", name, err)
		}
		defer t.Destroy()
		values = append(values, t)
	}

	outShape := ort.NewShape(1, seqLen, e.dim)
	if e.pooled {
		outShape = ort.NewShape(1, e.dim)
	}
	outT, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer outT.Destroy()

	if err := e.session.Run(values, []ort.Value{outT}); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	raw := outT.GetData()
	var vec []float64
	if e.pooled {
		vec = make([]float64, len(raw))
		for i, v := range raw {
			vec[i] = float64(v)
		}
	} else {
		vec = meanPool(raw, mask, e.seqLen, int(e.dim))
	}
	if e.normalize {
		l2Normalize(vec)
	}
	if err := checkVector(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// Close releases the session.
func (e *ONNX) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// selectInputs requires input_ids and attention_mask; token_type_ids is fed
// zeros when the model declares it.
func selectInputs(inputs []ort.InputOutputInfo) ([]string, error) {
	have := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		have[in.Name] = true
	}
	names := []string{"input_ids", "attention_mask"}
	for _, n := range names {
		if !have[n] {
			return nil, fmt.Errorf("onnx: model missing required input %q", n)
		}
	}
	if have["token_type_ids"] {
		names = append(names, "token_type_ids")
	}
	return names, nil
}

// resolveSharedLibraryPath locates a platform-specific onnxruntime library.
// ONNXRUNTIME_SHARED_LIBRARY_PATH wins; otherwise common names are probed.
func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
