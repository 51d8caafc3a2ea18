// Package todoist is a small client for the Todoist REST API. It covers the
// calls choregate needs: listing the tasks of a section to decide whether a
// child still has chores due, and listing projects and sections so users can
// find the section IDs to configure.
package todoist
