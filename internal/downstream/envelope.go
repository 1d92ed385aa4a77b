package downstream

// Envelope is the backend's response wrapper. Success is a pointer so an
// omitted flag can be told apart from an explicit false.
type Envelope[T any] struct {
	Success *bool  `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

func (e Envelope[T]) failed() bool {
	return e.Success != nil && !*e.Success
}

func (e Envelope[T]) succeeded() bool {
	return e.Success != nil && *e.Success
}
