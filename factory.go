package pollstream

// NewFactory captures uri and opts as a template and returns a constructor
// for streams built from it. Every stream it returns is independent: it
// has its own pending set, request ids, buffer, timer and lifecycle.
//
// Options are re-applied for every stream, so validation errors surface
// on each call to the constructor.
func NewFactory(uri string, opts ...Option) func() (*Stream, error) {
	template := append([]Option(nil), opts...)
	return func() (*Stream, error) {
		return New(uri, template...)
	}
}
