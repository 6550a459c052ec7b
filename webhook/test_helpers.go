package webhook

import "github.com/stretchr/testify/mock"

// MatchSubscriber creates a custom matcher for subscriber arguments in mocks
func MatchSubscriber(matcher func(Subscriber) bool) interface{} {
	return mock.MatchedBy(matcher)
}

// MatchDelivery creates a custom matcher for delivery arguments in mocks
func MatchDelivery(matcher func(Delivery) bool) interface{} {
	return mock.MatchedBy(matcher)
}
