package sched

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Task is one static scheduled command, configured by the operator in
// the tasks file rather than subscribed by a user.
type Task struct {
	Name     string `yaml:"name"`
	Cron     string `yaml:"cron"`
	Platform string `yaml:"platform"`
	UserID   string `yaml:"user_id"`
	Command  string `yaml:"command"`
}

type taskFile struct {
	Tasks []Task `yaml:"tasks"`
}

// LoadTasks reads the static task list. A missing file is an empty
// list; a task with a broken cron expression is skipped with a
// warning so one typo does not silence the rest.
func LoadTasks(path string, logger *slog.Logger) ([]Task, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debug("tasks file does not exist, skipping", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read tasks file: %w", err)
	}

	var file taskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("cannot parse tasks file: %w", err)
	}

	tasks := make([]Task, 0, len(file.Tasks))
	for _, task := range file.Tasks {
		if err := ValidateCron(task.Cron); err != nil {
			logger.Warn("skipping task", "name", task.Name, "error", err)
			continue
		}
		if task.Command == "" {
			logger.Warn("skipping task without a command", "name", task.Name)
			continue
		}
		logger.Info("loaded scheduled task", "name", task.Name, "cron", task.Cron)
		tasks = append(tasks, task)
	}
	return tasks, nil
}
