// Package process runs executables and captures or streams their output.
//
// # Overview
//
// [Service] is the capability every backend implements:
//
//	svc := process.NewOSService(process.WithDefaultTimeout(30 * time.Second))
//	result, err := svc.Exec(ctx, "/usr/bin/python3", []string{"--version"}, process.SpawnOptions{})
//	fmt.Println(result.Stdout)
//
// Streaming invocations deliver output chunks on a channel that is closed when
// the process ends:
//
//	obs, err := svc.ExecObservable(ctx, "/usr/bin/python3", []string{"-u", "train.py"}, process.SpawnOptions{})
//	for out := range obs.Out {
//	    fmt.Print(out.Out)
//	}
//	err = obs.Wait()
//
// # Backends
//
// [OSService] spawns operating system processes. [WasmService] runs WASI
// modules in-process with wazero, so an interpreter compiled to WebAssembly
// can be driven through the same interface. The processtest package provides
// a scripted in-memory implementation for tests.
//
// A WASI build of CPython can be fetched with the download tool:
//
//	go run ./internal/tools/download \
//	    https://github.com/vmware-labs/webassembly-language-runtimes/releases/download/python%2F3.12.0%2B20231211-040d5a6/python-3.12.0.wasm \
//	    python.wasm
package process
