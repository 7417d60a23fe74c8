// Package importer implements the bulk student CSV import flow.
//
// The flow has four stages, each usable on its own by the web handlers, the
// CLI or tests:
//
//   - Parsing: [Parse] and [ParseReader] turn raw text into a [Document].
//   - Mapping: [AutoMap] proposes which headers hold name, email and course.
//   - Validation: [Validate] collects every mapping and email problem.
//   - Simulation: [StartRun] ticks through the rows, counting successes and
//     failures decided by an [Outcome].
//
// # Service
//
// [Service] keeps import sessions addressed by id. A session holds the last
// uploaded document, its mapping and the latest run:
//
//	view, _ := svc.Upload(ctx, "students.csv", file)
//	view, _ = svc.SetMapping(view.ID, importer.FieldEmail, "mail")
//	view, err := svc.Start(ctx, view.ID)
//	var verr *importer.ValidationError
//	if errors.As(err, &verr) {
//	    // show verr.Errors
//	}
//	progress, _ := svc.Subscribe(view.ID)
//
// Running imports are capped by a [Limiter]. Finished runs are written to the
// key-value store under kv.ImportKey, and sessions are swept once they have
// been idle for the retention window.
package importer
