package admission

import (
	"encoding/json"
	"fmt"

	admissionv1 "k8s.io/api/admission/v1"

	"github.com/kilianp07/greenplace/core/model"
)

type workloadObject struct {
	Metadata struct {
		Labels map[string]string `json:"labels"`
	} `json:"metadata"`
	Spec struct {
		DurationHours *int `json:"duration_hours"`
		GPU           *struct {
			Type string `json:"type"`
		} `json:"gpu"`
		Latency *struct {
			FromRegion string `json:"from_region"`
		} `json:"latency"`
	} `json:"spec"`
}

// DecodeReview parses an AdmissionReview body.
func DecodeReview(body []byte) (*admissionv1.AdmissionReview, error) {
	var review admissionv1.AdmissionReview
	if err := json.Unmarshal(body, &review); err != nil {
		return nil, &model.ValidationError{Reason: "malformed admission review: " + err.Error()}
	}
	return &review, nil
}

// DecodeWorkload extracts the workload carried by review. The returned uid is
// set whenever the review has a request, even when the object is invalid, so
// the denial can be correlated. An absent duration takes defaultDuration.
func DecodeWorkload(review *admissionv1.AdmissionReview, defaultDuration int) (string, model.WorkloadRequest, error) {
	if review == nil || review.Request == nil {
		return "", model.WorkloadRequest{}, &model.ValidationError{Field: "request", Reason: "is missing"}
	}
	uid := string(review.Request.UID)
	if len(review.Request.Object.Raw) == 0 {
		return uid, model.WorkloadRequest{}, &model.ValidationError{Field: "request.object", Reason: "is missing"}
	}
	var obj workloadObject
	if err := json.Unmarshal(review.Request.Object.Raw, &obj); err != nil {
		return uid, model.WorkloadRequest{}, &model.ValidationError{Field: "request.object", Reason: fmt.Sprintf("is malformed: %v", err)}
	}
	req := model.WorkloadRequest{
		DurationHours: defaultDuration,
		Labels:        obj.Metadata.Labels,
	}
	if obj.Spec.DurationHours != nil {
		req.DurationHours = *obj.Spec.DurationHours
	}
	if obj.Spec.GPU != nil {
		req.GPUType = obj.Spec.GPU.Type
	}
	if obj.Spec.Latency != nil {
		req.LatencyOrigin = obj.Spec.Latency.FromRegion
	}
	if err := req.Validate(); err != nil {
		return uid, model.WorkloadRequest{}, err
	}
	return uid, req, nil
}
