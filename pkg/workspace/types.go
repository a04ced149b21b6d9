package workspace

import (
	"slices"
	"time"
)

// Project groups tasks and carries a team of member user ids
type Project struct {
	ID         string    `json:"id" bson:"_id"`
	BusinessID string    `json:"business" bson:"business"`
	Name       string    `json:"name" bson:"name"`
	Team       []string  `json:"team" bson:"team"`
	Version    int64     `json:"version" bson:"version"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

func (p *Project) GetID() string { return p.ID }
func (p *Project) GetVersion() int64 { return p.Version }
func (p *Project) SetVersion(v int64) { p.Version = v }
func (p *Project) GetScope() string { return p.BusinessID }

// Task is a unit of work assigned to members
type Task struct {
	ID         string    `json:"id" bson:"_id"`
	BusinessID string    `json:"business" bson:"business"`
	ProjectID  string    `json:"project" bson:"project"`
	Title      string    `json:"title" bson:"title"`
	Assignees  []string  `json:"assignees" bson:"assignees"`
	Version    int64     `json:"version" bson:"version"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

func (t *Task) GetID() string { return t.ID }
func (t *Task) GetVersion() int64 { return t.Version }
func (t *Task) SetVersion(v int64) { t.Version = v }
func (t *Task) GetScope() string { return t.BusinessID }

// Client is an external customer record of a business
type Client struct {
	ID         string    `json:"id" bson:"_id"`
	BusinessID string    `json:"business" bson:"business"`
	Name       string    `json:"name" bson:"name"`
	Email      string    `json:"email" bson:"email"`
	Version    int64     `json:"version" bson:"version"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

func (c *Client) GetID() string { return c.ID }
func (c *Client) GetVersion() int64 { return c.Version }
func (c *Client) SetVersion(v int64) { c.Version = v }
func (c *Client) GetScope() string { return c.BusinessID }

// without removes every occurrence of id and reports whether any was found
func without(ids []string, id string) ([]string, bool) {
	if !slices.Contains(ids, id) {
		return ids, false
	}
	return slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id }), true
}
