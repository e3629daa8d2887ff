// Package wasminspect reads compiled WebAssembly modules and reports their
// structure without running them.
//
// The repository is organized as:
//
//	wasm/            binary reader: cursor, section scanner, decoders, validation
//	errors/          structured error taxonomy shared by every package
//	inspect/         reports, batch parsing, manifests and a wazero cross-check
//	config/          TOML configuration for the command line tool
//	cmd/wasminspect  command line tool and interactive export browser
//
// A typical caller only needs the wasm package:
//
//	module, err := wasm.Parse(data)
//	if err != nil {
//	    return err
//	}
//	for _, fn := range module.ExportedFunctions() {
//	    fmt.Println(fn.Name, fn.Type)
//	}
package wasminspect
