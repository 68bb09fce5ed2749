package eventbus

// SubscribeTyped filters the bus down to events of type T. The returned
// stop function unsubscribes from the underlying bus.
func SubscribeTyped[T any](bus EventBus) (<-chan T, func()) {
	raw := bus.Subscribe()
	out := make(chan T, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case e, ok := <-raw:
				if !ok {
					return
				}
				if ev, match := e.(T); match {
					select {
					case out <- ev:
					default:
					}
				}
			case <-done:
				return
			}
		}
	}()
	stop := func() {
		close(done)
		bus.Unsubscribe(raw)
	}
	return out, stop
}
