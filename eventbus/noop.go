package eventbus

// Noop discards every event; useful as the default Bus in tests that don't
// assert on event-bus traffic.
type Noop struct{}

func (Noop) Narrow(NarrowResult)            {}
func (Noop) Alert(AlertKind, string, error) {}
func (Noop) ChildKeys(ChildKeys)            {}
func (Noop) ChildUpDown(UpDown)             {}
