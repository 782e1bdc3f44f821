/*
Package resilience keeps guest network traffic away from origins that are
known to be down.

Breakers tracks one breaker per origin. After Policy.Failures consecutive
origin failures (as classified by Policy.Counts, typically transport errors)
the origin opens and every request to it fails fast with an *OpenError until
the cooldown ends. Then a single trial request is let through: success
closes the origin, failure reopens it for another cooldown.

	Closed --[N failures]--> Open --[cooldown]--> Trial --[success]--> Closed
	                          ^                    |
	                          +-----[failure]------+

Errors the origin is not responsible for, such as an invalid URL or a
canceled caller, neither count against it nor reset its streak.

# Usage

	breakers := resilience.NewBreakers(resilience.Policy{
		Failures: 5,
		Cooldown: 30 * time.Second,
		Counts: func(err error) bool {
			return errors.Is(err, network.ErrTransportFailure)
		},
	})

	err := breakers.Guard(origin, func() error {
		return roundTrip(ctx, req)
	})
	if errors.Is(err, resilience.ErrOriginOpen) {
		// fail fast without touching the network
	}
*/
package resilience
