package assert

// NotNil panics on a missing dependency at construction time.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}
