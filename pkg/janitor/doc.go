// Package janitor runs periodic maintenance: expired invitation cleanup and
// audit retention. Jobs log through logrus and run on robfig/cron schedules.
//
//	j := janitor.New(logrus.StandardLogger(), time.Minute)
//	j.Add(janitor.InvitationJob("@hourly", invitationService))
//	j.Add(janitor.AuditRetentionJob("30 3 * * *", auditStore, audit.RetentionPolicy{RetentionDays: 365}))
//	j.Start()
//	defer j.Stop(ctx)
package janitor
