package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	domainJob "github.com/vectorhub/ragcache/domains/job"
	pkgError "github.com/vectorhub/ragcache/pkg/error"
)

func ValidateEnqueue(ctx context.Context, request domainJob.EnqueueRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.TenantID, validation.Required),
		validation.Field(&request.DocumentID, validation.Required),
		validation.Field(&request.CollectionID, validation.Required),
		validation.Field(&request.SourceType, validation.Required, validation.In(
			domainJob.SourceFile, domainJob.SourceURL, domainJob.SourceText,
		)),
		validation.Field(&request.FileKey,
			validation.Required.When(request.SourceType == domainJob.SourceFile)),
		validation.Field(&request.URL,
			validation.Required.When(request.SourceType == domainJob.SourceURL), is.URL),
		validation.Field(&request.TextContent,
			validation.Required.When(request.SourceType == domainJob.SourceText)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
