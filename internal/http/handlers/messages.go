package handlers

import (
	"errors"

	"rewrite-moment/internal/domain"
)

// User-facing strings keyed by locale. Raw vendor bodies never reach these;
// the orchestrator's logs carry the detail.
var messages = map[string]map[string]string{
	"en": {
		"generation_started":   "Video generation started",
		"image_required":       "Image URL is required",
		"invalid_image":        "Invalid image format",
		"invalid_payload":      "Invalid request body",
		"payload_too_large":    "Request body is too large",
		"start_failed":         "Failed to start video generation",
		"moderation_rejected":  "The request was declined by the provider's content safety filter",
		"provider_unavailable": "The video provider is temporarily unavailable, please try again",
		"not_configured":       "No video provider is configured",
		"upload_ready":         "Image ready for processing",
	},
	"ko": {
		"generation_started":   "영상 생성이 시작되었습니다",
		"image_required":       "이미지가 필요합니다",
		"invalid_image":        "지원하지 않는 이미지 형식입니다",
		"invalid_payload":      "요청 형식이 올바르지 않습니다",
		"payload_too_large":    "요청 크기가 너무 큽니다",
		"start_failed":         "영상 생성을 시작하지 못했습니다",
		"moderation_rejected":  "콘텐츠 안전 기준에 따라 요청이 거절되었습니다",
		"provider_unavailable": "영상 생성 서비스가 일시적으로 불안정합니다. 잠시 후 다시 시도해주세요",
		"not_configured":       "사용 가능한 영상 생성 서비스가 없습니다",
		"upload_ready":         "이미지가 준비되었습니다",
	},
}

func msg(locale, key string) string {
	if table, ok := messages[locale]; ok {
		if v, ok := table[key]; ok {
			return v
		}
	}
	return messages["en"][key]
}

// submitFailureDetail picks the safe user-facing detail for a failed
// submission.
func submitFailureDetail(locale string, err error) string {
	switch {
	case errors.Is(err, domain.ErrModerationRejected):
		return msg(locale, "moderation_rejected")
	case errors.Is(err, domain.ErrAuth):
		return msg(locale, "not_configured")
	default:
		return msg(locale, "provider_unavailable")
	}
}
