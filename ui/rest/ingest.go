package rest

import (
	"github.com/gofiber/fiber/v2"

	domainJob "github.com/vectorhub/ragcache/domains/job"
	"github.com/vectorhub/ragcache/pkg/utils"
	"github.com/vectorhub/ragcache/ui/rest/middleware"
	"github.com/vectorhub/ragcache/validations"
)

type Ingest struct {
	Service domainJob.IJobUsecase
}

func InitRestIngest(app fiber.Router, service domainJob.IJobUsecase) Ingest {
	rest := Ingest{Service: service}
	app.Post("/ingest", rest.Enqueue)
	app.Get("/ingest/jobs/:id", rest.GetJobStatus)
	app.Post("/ingest/jobs/:id/retry", rest.RetryJob)
	app.Post("/ingest/jobs/:id/cancel", rest.CancelJob)

	return rest
}

func (handler *Ingest) Enqueue(c *fiber.Ctx) error {
	var request domainJob.EnqueueRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	// The header is authoritative; a body tenant is ignored.
	request.TenantID = middleware.TenantFrom(c)

	utils.PanicIfNeeded(validations.ValidateEnqueue(c.UserContext(), request))

	jobID, err := handler.Service.Enqueue(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.Status(202).JSON(utils.ResponseData{
		Status:  202,
		Code:    "ACCEPTED",
		Message: "Ingestion job enqueued",
		Results: map[string]string{"job_id": jobID},
	})
}

func (handler *Ingest) GetJobStatus(c *fiber.Ctx) error {
	jobID := c.Params("id")
	info, err := handler.Service.GetJobStatus(c.UserContext(), jobID, middleware.TenantFrom(c))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Job status retrieved",
		Results: info,
	})
}

func (handler *Ingest) RetryJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	err := handler.Service.RetryFailedJob(c.UserContext(), jobID, middleware.TenantFrom(c))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Job re-enqueued",
	})
}

func (handler *Ingest) CancelJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	err := handler.Service.CancelJob(c.UserContext(), jobID, middleware.TenantFrom(c))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Job cancelled",
	})
}
