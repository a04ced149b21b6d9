// Package workspace holds the business-scoped records that reference members:
// projects with their teams, tasks with their assignees, and clients.
//
// Only the operations membership changes need are provided. DetachUser strips
// a removed member from every team and assignee list in a business, and
// DeleteBusiness removes every record scoped to a business.
package workspace
