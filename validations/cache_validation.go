package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	domainCache "github.com/vectorhub/ragcache/domains/cache"
	pkgError "github.com/vectorhub/ragcache/pkg/error"
)

func ValidateInvalidate(ctx context.Context, request domainCache.InvalidateRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.DataType, validation.Required),
		validation.Field(&request.ResourceID, validation.Required),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	for _, rel := range request.Related {
		if rel.DataType == "" || rel.ResourceID == "" {
			return pkgError.ValidationError("related entries need data_type and resource_id")
		}
	}

	return nil
}
