package gateway

import "context"

// Set routes calls to the gateway registered for their partner.
type Set struct {
	gateways map[Partner]*Gateway
}

func NewSet(gateways ...*Gateway) *Set {
	s := &Set{gateways: make(map[Partner]*Gateway, len(gateways))}
	for _, g := range gateways {
		s.gateways[g.Partner()] = g
	}
	return s
}

func (s *Set) Gateway(p Partner) (*Gateway, bool) {
	g, ok := s.gateways[p]
	return g, ok
}

// Execute performs call through the partner's gateway. A call to a partner
// with no registered gateway fails as a non-business rejection.
func (s *Set) Execute(ctx context.Context, call Call) Outcome {
	g, ok := s.gateways[call.Partner]
	if !ok {
		return Outcome{
			Call: call,
			Err: &IntegrationError{
				Kind:      KindRejected,
				Partner:   call.Partner,
				Operation: call.Operation,
				Reason:    "no gateway configured for partner",
			},
		}
	}
	return g.Call(ctx, call.Operation, call.Payload)
}
