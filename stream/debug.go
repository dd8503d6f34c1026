package stream

// Global debug function for stream package
var debugMsgFunc func(component, message string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}
