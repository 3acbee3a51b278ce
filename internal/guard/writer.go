package guard

// AttributeWriter is the write entry point a Guard decorates.
//
// SetAttr assigns value to the attribute called name on target. A Guard is
// itself an AttributeWriter, so guards can be stacked.
type AttributeWriter[T any] interface {
	SetAttr(target *T, name string, value any) error
}

// WriterFunc adapts a plain function to AttributeWriter.
type WriterFunc[T any] func(target *T, name string, value any) error

// SetAttr calls f(target, name, value).
func (f WriterFunc[T]) SetAttr(target *T, name string, value any) error {
	return f(target, name, value)
}
