/*
worker.go - Grade-calculation job handling

PURPOSE:
  Bridges the task queue to the grading engine. The queue consumer
  calls Handle once per delivered job; this validates the payload and
  runs the calculation. Jobs for superseded tasks resolve cleanly
  instead of poisoning the queue; a job whose task is not visible yet
  comes back through redelivery.
*/
package assessment

import "context"

// Worker processes grade-calculation jobs.
type Worker struct {
	Engine *GradingEngine
}

func NewWorker(engine *GradingEngine) *Worker {
	return &Worker{Engine: engine}
}

// Handle runs one job. Under at-least-once delivery a job can reach
// the worker before its task row is readable, so a missing task is
// reported as retryable and the job comes back through redelivery
// until the task is graded or deactivated. A deactivated task is a
// no-op inside the engine. Other errors are returned for the
// consumer's retry policy.
func (w *Worker) Handle(ctx context.Context, job GradeCalculationJob) error {
	if job.AssessmentID == "" || job.TaskID == "" {
		return InvalidInputf("grade calculation job missing assessment or task id")
	}
	err := w.Engine.Calculate(ctx, job.AssessmentID, job.TaskID, job.Trigger)
	if err != nil && IsNotFound(err) {
		return Transientf(err, "task %s for assessment %s not readable yet", job.TaskID, job.AssessmentID)
	}
	return err
}
