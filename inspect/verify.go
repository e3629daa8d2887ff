package inspect

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-inspect/errors"
	"github.com/wippyai/wasm-inspect/wasm"
)

// Verifier compiles modules with wazero, without instantiating them, and
// compares the exported function signatures wazero sees with the reader's.
// It is safe for concurrent use.
type Verifier struct {
	runtime wazero.Runtime
}

// NewVerifier creates a verifier backed by an interpreter runtime, which
// compiles fastest since nothing is ever run.
func NewVerifier(ctx context.Context) *Verifier {
	cfg := wazero.NewRuntimeConfigInterpreter().
		WithCoreFeatures(api.CoreFeaturesV2)
	return &Verifier{runtime: wazero.NewRuntimeWithConfig(ctx, cfg)}
}

// Close releases the underlying runtime.
func (v *Verifier) Close(ctx context.Context) error {
	return v.runtime.Close(ctx)
}

// Verify checks mod, decoded from data, against wazero's view of data.
func (v *Verifier) Verify(ctx context.Context, data []byte, mod *wasm.Module) error {
	compiled, err := v.runtime.CompileModule(ctx, data)
	if err != nil {
		return errors.New(errors.PhaseVerify, errors.KindVerifyMismatch).
			Detail("wazero rejected a module the reader accepted").
			Cause(err).
			Build()
	}
	defer compiled.Close(ctx)

	theirs := compiled.ExportedFunctions()
	ours := mod.ExportedFunctions()
	if len(theirs) != len(ours) {
		return mismatch("wazero sees %d exported functions, reader sees %d", len(theirs), len(ours))
	}
	for _, fn := range ours {
		def, ok := theirs[fn.Name]
		if !ok {
			return mismatch("export %q unknown to wazero", fn.Name)
		}
		ft := funcType(def)
		if !ft.Equal(fn.Type) {
			return mismatch("export %q: wazero %s, reader %s", fn.Name, ft, fn.Type)
		}
	}

	Logger().Debug("verified module", zap.Int("exports", len(ours)))
	return nil
}

// Verify compiles data with a throwaway runtime and compares it with mod.
func Verify(ctx context.Context, data []byte, mod *wasm.Module) error {
	v := NewVerifier(ctx)
	defer v.Close(ctx)
	return v.Verify(ctx, data, mod)
}

func mismatch(format string, args ...any) error {
	return errors.New(errors.PhaseVerify, errors.KindVerifyMismatch).
		Detail(format, args...).
		Build()
}

func funcType(def api.FunctionDefinition) wasm.FuncType {
	return wasm.FuncType{
		Params:  valTypes(def.ParamTypes()),
		Results: valTypes(def.ResultTypes()),
	}
}

// api.ValueType uses the binary encoding, so values convert directly.
func valTypes(in []api.ValueType) []wasm.ValType {
	out := make([]wasm.ValType, len(in))
	for i, vt := range in {
		out[i] = wasm.ValType(vt)
	}
	return out
}
