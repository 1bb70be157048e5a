package models

import "testing"

func TestReviewStatus_Valid(t *testing.T) {
	tests := []struct {
		status ReviewStatus
		want   bool
	}{
		{ReviewStatusPending, true},
		{ReviewStatusApproved, true},
		{ReviewStatusRejected, true},
		{ReviewStatus(""), false},
		{ReviewStatus("maybe"), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestReviewResult_Approved(t *testing.T) {
	if !(ReviewResult{Status: ReviewStatusApproved}).Approved() {
		t.Error("approved result should report Approved() = true")
	}
	if (ReviewResult{Status: ReviewStatusRejected}).Approved() {
		t.Error("rejected result should report Approved() = false")
	}
	if (ReviewResult{Status: ReviewStatusPending}).Approved() {
		t.Error("pending result should report Approved() = false")
	}
}
