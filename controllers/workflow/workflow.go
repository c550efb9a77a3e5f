package workflow

// RunInGivenOrder will execute N functions, passed as varargs as `funcs`. The order of execution will depend on the result
// of the evaluation of the `shouldRunInOrder` boolean value. If `shouldRunInOrder` is true, the functions will be executed in order; if
// `shouldRunInOrder` is false, the functions will be executed in reverse order (from last to first).
// Warnings of the steps that succeeded are kept in the returned status.
func RunInGivenOrder(shouldRunInOrder bool, funcs ...func() Status) Status {
	var result Status = OK()
	run := func(fn func() Status) bool {
		s := fn()
		if !s.IsOK() {
			result = s
			return false
		}
		result = result.Merge(s)
		return true
	}
	if shouldRunInOrder {
		for _, fn := range funcs {
			if !run(fn) {
				return result
			}
		}
	} else {
		for i := len(funcs) - 1; i >= 0; i-- {
			if !run(funcs[i]) {
				return result
			}
		}
	}
	return result
}
