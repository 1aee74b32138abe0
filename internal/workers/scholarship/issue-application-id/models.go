package issueapplicationid

type Input struct {
	// CounterKey defaults to the scholarship application counter.
	CounterKey string `json:"counterKey,omitempty"`
}

type Output struct {
	CounterKey    string `json:"counterKey"`
	Sequence      int64  `json:"sequence"`
	ApplicationID string `json:"applicationId"`
}
