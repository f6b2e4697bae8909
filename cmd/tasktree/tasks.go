package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/output"
	"github.com/abatilo/tasktree/internal/task"
)

// createCmd implements 'tasktree create'.
func createCmd() *cobra.Command {
	var (
		description string
		taskType    string
		status      string
		parent      string
		priority    string
		deps        []string
	)
	cmd := &cobra.Command{
		Use:   "create <path> <name>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(2), //nolint:mnd // CLI takes 2 positional args
		Run: func(cmd *cobra.Command, args []string) {
			s, err := getStore(cmd.Context())
			if err != nil {
				printError(err)
			}
			defer s.Close()

			t, err := s.Create(cmd.Context(), task.CreateTaskInput{
				Path:         args[0],
				Name:         args[1],
				Description:  description,
				Type:         task.Type(taskType),
				Status:       task.Status(status),
				ParentPath:   parent,
				Dependencies: deps,
				Metadata:     task.Metadata{Priority: priority},
			})
			if err != nil {
				printError(err)
			}
			printOutput(formatter.FormatTask(t))
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&taskType, "type", "t", string(task.TypeTask), "Type (TASK, MILESTONE, GROUP)")
	cmd.Flags().StringVarP(&status, "status", "s", string(task.StatusPending), "Initial status")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent task path (must be the path's directory)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority label")
	cmd.Flags().StringSliceVar(&deps, "dep", nil, "Path of a task this one depends on (repeatable)")
	return cmd
}

// updateCmd implements 'tasktree update'. Only flags given on the command
// line change the task.
func updateCmd() *cobra.Command {
	var (
		name, description, taskType string
		status, parent, priority    string
		reason, errorDetails        string
		deps                        []string
		notes                       task.Notes
	)
	cmd := &cobra.Command{
		Use:   "update <path>",
		Short: "Update fields of a task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s, err := getStore(cmd.Context())
			if err != nil {
				printError(err)
			}
			defer s.Close()

			flags := cmd.Flags()
			var in task.UpdateTaskInput
			if flags.Changed("name") {
				in.Name = &name
			}
			if flags.Changed("description") {
				in.Description = &description
			}
			if flags.Changed("type") {
				tt := task.Type(taskType)
				in.Type = &tt
			}
			if flags.Changed("status") {
				st := task.Status(status)
				in.Status = &st
			}
			if flags.Changed("parent") {
				in.ParentPath = &parent
			}
			if flags.Changed("dep") {
				in.Dependencies = &deps
			}
			if len(notes.Planning)+len(notes.Progress)+len(notes.Completion)+len(notes.Troubleshooting) > 0 {
				in.Notes = &notes
			}

			if flags.Changed("priority") || flags.Changed("reason") || flags.Changed("error") {
				current, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					printError(err)
				}
				md := current.Metadata
				if flags.Changed("priority") {
					md.Priority = priority
				}
				if flags.Changed("reason") {
					md.BlockedReason = reason
				}
				if flags.Changed("error") {
					md.ErrorDetails = errorDetails
				}
				in.Metadata = &md
			}

			if in == (task.UpdateTaskInput{}) {
				printError(treeerrors.InvalidFieldError{Path: args[0], Field: "update", Reason: "no changes given"})
			}

			t, err := s.Update(cmd.Context(), args[0], in)
			if err != nil {
				printError(err)
			}
			printOutput(formatter.FormatTask(t))
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "New name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVarP(&taskType, "type", "t", "", "New type")
	cmd.Flags().StringVarP(&status, "status", "s", "", "New status")
	cmd.Flags().StringVar(&parent, "parent", "", "New parent path")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority label")
	cmd.Flags().StringVar(&reason, "reason", "", "Blocked reason")
	cmd.Flags().StringVar(&errorDetails, "error", "", "Failure details")
	cmd.Flags().StringSliceVar(&deps, "dep", nil, "Replace dependencies (repeatable; empty value clears)")
	cmd.Flags().StringArrayVar(&notes.Planning, "note-planning", nil, "Append a planning note")
	cmd.Flags().StringArrayVar(&notes.Progress, "note-progress", nil, "Append a progress note")
	cmd.Flags().StringArrayVar(&notes.Completion, "note-completion", nil, "Append a completion note")
	cmd.Flags().StringArrayVar(&notes.Troubleshooting, "note-troubleshooting", nil, "Append a troubleshooting note")
	return cmd
}

// showCmd implements 'tasktree show'.
func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <path>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s, err := getStore(cmd.Context())
			if err != nil {
				printError(err)
			}
			defer s.Close()

			t, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				printError(err)
			}
			printOutput(formatter.FormatTask(t))
		},
	}
}

// listCmd implements 'tasktree ls'.
func listCmd() *cobra.Command {
	var pattern, status, parent string
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks by pattern, status or parent",
		Run: func(cmd *cobra.Command, _ []string) {
			flags := cmd.Flags()
			set := 0
			for _, f := range []string{"pattern", "status", "parent"} {
				if flags.Changed(f) {
					set++
				}
			}
			if set > 1 {
				printError(errors.New("--pattern, --status and --parent are mutually exclusive"))
			}

			s, err := getStore(cmd.Context())
			if err != nil {
				printError(err)
			}
			defer s.Close()

			var tasks []*task.Task
			switch {
			case flags.Changed("status"):
				tasks, err = s.GetByStatus(cmd.Context(), task.Status(status))
			case flags.Changed("parent"):
				tasks, err = s.GetSubtasks(cmd.Context(), parent)
			default:
				tasks, err = s.GetByPattern(cmd.Context(), pattern)
			}
			if err != nil {
				printError(err)
			}
			printOutput(formatter.FormatTaskList(tasks))
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "Path prefix or glob (e.g. proj/*/api)")
	cmd.Flags().StringVar(&status, "status", "", "Only tasks with this status")
	cmd.Flags().StringVar(&parent, "parent", "", "Only direct subtasks of this path")
	return cmd
}

// treeCmd implements 'tasktree tree'.
func treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [pattern]",
		Short: "Display the task hierarchy",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s, err := getStore(cmd.Context())
			if err != nil {
				printError(err)
			}
			defer s.Close()

			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			tasks, err := s.GetByPattern(cmd.Context(), pattern)
			if err != nil {
				printError(err)
			}
			printOutput(formatter.FormatTree(output.BuildTree(tasks)))
		},
	}
}

// rmCmd implements 'tasktree rm'.
func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a task and its subtasks",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s, err := getStore(cmd.Context())
			if err != nil {
				printError(err)
			}
			defer s.Close()

			if err = s.Delete(cmd.Context(), args[0]); err != nil {
				printError(err)
			}
			printOutput(formatter.FormatMessage(fmt.Sprintf("Deleted %s", args[0])))
		},
	}
}
