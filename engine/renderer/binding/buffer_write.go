package binding

// BufferWrite describes a single GPU buffer write targeting a specific binding
// on a Provider at a given byte offset. Frame code stages writes into a slice
// and submits them in one batch so the queue mutex is taken once per frame,
// not once per write.
type BufferWrite struct {
	Provider Provider
	Binding  int
	Offset   uint64
	Data     []byte
}
