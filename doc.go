// Package pyexec runs a Python interpreter through a pluggable process
// backend and provides an in-memory stand-in for tests.
//
// # Overview
//
// A [python.ExecutionService] answers metadata queries about one interpreter
// and launches it with arguments or as "python -m <module>". The real service
// drives any [process.Service]:
//
//	svc := python.NewService(python.Environment{Path: "/usr/bin/python3"}, process.NewOSService())
//
//	info, _ := svc.InterpreterInformation(ctx)
//	fmt.Println(info.Version)
//
//	result, _ := svc.ExecModule(ctx, "pip", []string{"list"}, process.SpawnOptions{})
//	fmt.Print(result.Stdout)
//
// # Testing
//
// pythontest.MockService reports fixed metadata and answers calls from
// registered results without starting a process:
//
//	svc := pythontest.NewMockService(python.Environment{Path: "/usr/bin/python3"})
//	svc.AddExecModuleResult("pip", processtest.Strings("list"), processtest.Result("pkg==1.0"))
//	svc.SetDelay(50 * time.Millisecond)
//
// See the [process], [process/processtest], [language/python] and
// [language/python/pythontest] packages for detailed API documentation.
package pyexec
