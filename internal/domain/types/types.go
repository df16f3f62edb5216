// Package types contains result types shared by the service and the HTTP layer.
package types

// RejectedItem identifies an input item that failed validation.
type RejectedItem struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchResult reports what happened to an appended batch.
type BatchResult struct {
	BucketRef    string         `json:"bucketRef,omitempty"`
	BucketNumber int            `json:"bucketNumber,omitempty"`
	Total        int            `json:"total"`
	Accepted     int            `json:"accepted"`
	Rejected     []RejectedItem `json:"rejected"`
	Duplicate    bool           `json:"duplicate,omitempty"`
}

// Reject appends a rejected item.
func (r *BatchResult) Reject(index int, err error) {
	r.Rejected = append(r.Rejected, RejectedItem{Index: index, Reason: err.Error()})
}
