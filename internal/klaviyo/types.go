package klaviyo

// Metric names and the flow checked by CheckEvents.
const (
	MetricSubscriptionCreated = "SUBSCRIPTION_CREATED"
	MetricViewedAIAP          = "viewed_aiap"
	MetricReceivedEmail       = "Received Email"
)

// resource is a JSON:API resource object.
type resource struct {
	ID         string `json:"id"`
	Attributes struct {
		Name            string         `json:"name"`
		EventProperties map[string]any `json:"event_properties"`
	} `json:"attributes"`
}

// document is a JSON:API collection response.
type document struct {
	Data  []resource `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// EventFlags reports which events a profile has.
type EventFlags struct {
	SubscriptionCreated bool `json:"subscriptionCreated"`
	LabTestScheduled    bool `json:"labTestScheduled"`
	ViewedAIAP          bool `json:"viewedAiap"`
}

// EventCheck is the result of CheckEvents.
type EventCheck struct {
	Email  string     `json:"email"`
	Events EventFlags `json:"events"`
}
