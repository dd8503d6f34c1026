package tracking

// Global debug function for tracking package
var debugMsgFunc func(component, message string)

// Verbose debug function, only wired when verbose output is enabled
var debugMsgVerboseFunc func(component, message string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

// SetDebugVerboseFunction allows main package to provide the verbose debug function
func SetDebugVerboseFunction(fn func(component, message string)) {
	debugMsgVerboseFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

func debugMsgVerbose(component, message string) {
	if debugMsgVerboseFunc != nil {
		debugMsgVerboseFunc(component, message)
	}
}
