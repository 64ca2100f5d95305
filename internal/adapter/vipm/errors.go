package vipm

import (
	"net/http"
	"strings"

	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
)

// Backend API error codes the fulfillment flows react to.
const (
	CodeInvalidAddress                         = "1117"
	CodeInvalidFields                          = "1118"
	CodeTransferInvalidMembership              = "5115"
	CodeTransferInvalidMembershipOrTransferIDs = "5116"
	CodeTransferAlreadyTransferred             = "5117"
)

// recoverableReasons appear in transfer preview errors that clear up on their own.
var recoverableReasons = []string{
	"RETURNABLE_PURCHASE",
	"IN_WINDOW_NO_RENEWAL",
	"IN_WINDOW_PARTIAL_RENEWAL",
	"EXTENDED_TERM_3YC",
}

var validationCodes = map[string]struct{}{
	CodeInvalidAddress:                         {},
	CodeInvalidFields:                          {},
	CodeTransferInvalidMembership:              {},
	CodeTransferInvalidMembershipOrTransferIDs: {},
}

// apiError mirrors the backend error payload.
type apiError struct {
	Code              string   `json:"code"`
	Message           string   `json:"message"`
	AdditionalDetails []string `json:"additionalDetails"`
}

// classify turns a failed response into the tagged error consumed by the flows.
func classify(statusCode int, status string, payload *apiError) *domainErrors.BackendError {
	if payload == nil || payload.Code == "" {
		kind := domainErrors.KindUnrecoverable
		if statusCode == http.StatusNotFound {
			kind = domainErrors.KindNotFound
		}
		msg := status
		if payload != nil && payload.Message != "" {
			msg = payload.Message
		}
		return &domainErrors.BackendError{Kind: kind, Message: msg, StatusCode: statusCode}
	}

	be := &domainErrors.BackendError{
		Kind:       domainErrors.KindUnrecoverable,
		Code:       payload.Code,
		Message:    payload.Message,
		Details:    payload.AdditionalDetails,
		StatusCode: statusCode,
	}
	if _, ok := validationCodes[payload.Code]; ok {
		be.Kind = domainErrors.KindValidation
		return be
	}
	text := be.Error()
	for _, reason := range recoverableReasons {
		if strings.Contains(text, reason) {
			be.Kind = domainErrors.KindRecoverable
			break
		}
	}
	return be
}
