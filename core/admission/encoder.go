// Package admission converts placement decisions to and from the Kubernetes
// AdmissionReview envelope.
package admission

import (
	"encoding/json"

	admissionv1 "k8s.io/api/admission/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/kilianp07/greenplace/core/model"
)

// Patch paths written on the intercepted object.
const (
	LocationPath = "/spec/schedulingLocation"
	TimePath     = "/spec/schedulingTime"
)

// Encoder builds mutation responses. The zero value is ready to use.
type Encoder struct{}

// Response turns a decision or an error into a MutationResponse. A non-nil
// err always produces a denial.
func (Encoder) Response(uid string, d model.ScheduleDecision, err error) model.MutationResponse {
	if err != nil {
		return Deny(uid, err.Error())
	}
	return model.MutationResponse{
		UID:     uid,
		Allowed: true,
		Patch: []model.PatchOperation{
			{Op: "add", Path: LocationPath, Value: d.Region},
			{Op: "add", Path: TimePath, Value: d.StartTimeUTC()},
		},
	}
}

// Deny returns a denial carrying reason and no patch.
func Deny(uid, reason string) model.MutationResponse {
	if reason == "" {
		reason = "placement failed"
	}
	return model.MutationResponse{UID: uid, Reason: reason}
}

// Envelope wraps r in an AdmissionReview. A patch that cannot be marshalled
// turns the response into a denial.
func (Encoder) Envelope(r model.MutationResponse) admissionv1.AdmissionReview {
	review := admissionv1.AdmissionReview{
		TypeMeta: metav1.TypeMeta{
			APIVersion: admissionv1.SchemeGroupVersion.String(),
			Kind:       "AdmissionReview",
		},
		Response: &admissionv1.AdmissionResponse{UID: types.UID(r.UID)},
	}
	if r.Allowed {
		patch, err := json.Marshal(r.Patch)
		if err == nil {
			pt := admissionv1.PatchTypeJSONPatch
			review.Response.Allowed = true
			review.Response.PatchType = &pt
			review.Response.Patch = patch
			return review
		}
		r = Deny(r.UID, "encode patch: "+err.Error())
	}
	review.Response.Result = &metav1.Status{
		Status:  metav1.StatusFailure,
		Message: r.Reason,
	}
	return review
}

// Encode is Envelope(Response(uid, d, err)).
func (e Encoder) Encode(uid string, d model.ScheduleDecision, err error) admissionv1.AdmissionReview {
	return e.Envelope(e.Response(uid, d, err))
}
