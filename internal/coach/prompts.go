package coach

import (
	"fmt"
	"strings"

	"github.com/strideapp/stride/internal/insight"
	"github.com/strideapp/stride/internal/model"
)

// MessageKind selects the prompt, fallback text, and push framing for one
// coaching message.
type MessageKind string

const (
	KindCheckIn      MessageKind = "CHECK_IN"
	KindMotivation   MessageKind = "MOTIVATION"
	KindAnalysis     MessageKind = "ANALYSIS"
	KindDeadline     MessageKind = "DEADLINE"
	KindInactivity   MessageKind = "INACTIVITY"
	KindCompletion   MessageKind = "COMPLETION"
	KindWeeklyReview MessageKind = "WEEKLY_REVIEW"
)

// InteractionType maps a message kind onto the persisted interaction type.
// Deadline and completion messages are motivational, inactivity nudges are
// check-ins, and the weekly review is an analysis.
func (k MessageKind) InteractionType() model.InteractionType {
	switch k {
	case KindCheckIn, KindInactivity:
		return model.InteractionCheckIn
	case KindAnalysis, KindWeeklyReview:
		return model.InteractionAnalysis
	default:
		return model.InteractionMotivation
	}
}

// TaskContext scopes an analysis or celebration to a single task.
type TaskContext struct {
	Title          string
	Description    string
	CompletedSteps int
	TotalSteps     int
	DaysRemaining  *int
	Priority       model.TaskPriority
}

// buildPrompt renders the system and user prompts for one message. The
// snapshot may be nil only for KindCompletion, which needs task context alone.
func buildPrompt(kind MessageKind, userName string, snap *insight.Snapshot, task *TaskContext) (system, user string) {
	switch kind {
	case KindCheckIn, KindInactivity:
		system = "You are a supportive and motivating AI coach helping users with their goals. Be encouraging, specific, and actionable in your advice."
		var b strings.Builder
		fmt.Fprintf(&b, "Daily check-in for %s.\n\n", userName)
		b.WriteString(situationBlock(snap))
		b.WriteString(activeTaskDetails(snap))
		b.WriteString("\nProvide a motivating check-in message. Keep it under 200 words, be specific about their progress, and give actionable advice.")
		user = b.String()

	case KindMotivation, KindDeadline:
		system = "You are an empathetic and energizing AI coach. Provide genuine motivation and encouragement."
		var b strings.Builder
		fmt.Fprintf(&b, "%s needs motivation.\n\n", userName)
		fmt.Fprintf(&b, "Current situation:\n- Active tasks: %d\n- Current streak: %d days\n- Completed this week: %d\n\n",
			len(snap.ActiveTasks), snap.CurrentStreak, snap.CompletedThisWeek)
		if len(snap.ActiveTasks) > 0 {
			titles := make([]string, 0, len(snap.ActiveTasks))
			for _, t := range snap.ActiveTasks {
				titles = append(titles, t.Title)
			}
			fmt.Fprintf(&b, "They're working on: %s\n", strings.Join(titles, ", "))
		} else {
			b.WriteString("They have no active tasks at the moment.\n")
		}
		b.WriteString("\nProvide an uplifting and motivating message. Keep it under 150 words.")
		user = b.String()

	case KindAnalysis, KindWeeklyReview:
		system = "You are an analytical AI coach. Provide insights and constructive feedback on progress."
		if task != nil {
			var b strings.Builder
			fmt.Fprintf(&b, "Analyze progress for %s's task: %q\n\n", userName, task.Title)
			fmt.Fprintf(&b, "Task details:\n- Description: %s\n- Progress: %d/%d steps completed\n",
				task.Description, task.CompletedSteps, task.TotalSteps)
			if task.DaysRemaining != nil {
				fmt.Fprintf(&b, "- Days remaining: %d\n", *task.DaysRemaining)
			}
			fmt.Fprintf(&b, "- Priority: %s\n", task.Priority)
			b.WriteString("\nProvide analysis with:\n1. Progress assessment\n2. Potential blockers or concerns\n3. Specific recommendations\n\nKeep it under 250 words.")
			user = b.String()
			return system, user
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Analyze %s's overall progress.\n\n", userName)
		fmt.Fprintf(&b, "Stats:\n- Active tasks: %d\n- Backlog: %d\n- Completion rate: %.0f%%\n- Streak: %d days\n",
			len(snap.ActiveTasks), snap.BacklogCount, snap.WeeklyCompletionRate*100, snap.CurrentStreak)
		if len(snap.ActiveTasks) > 0 {
			b.WriteString("\nActive tasks:\n")
			for _, t := range snap.ActiveTasks {
				fmt.Fprintf(&b, "- %s (%d/%d steps)\n", t.Title, t.CompletedSteps, t.TotalSteps)
			}
		}
		b.WriteString("\nProvide comprehensive analysis with actionable insights. Keep it under 250 words.")
		user = b.String()

	case KindCompletion:
		system = "You are a celebratory AI coach. Cheer genuine accomplishments with warmth and energy."
		title := ""
		if task != nil {
			title = task.Title
		}
		user = fmt.Sprintf("%s just completed their task %q! Write a short celebratory message acknowledging the accomplishment and encouraging the next goal. Keep it under 100 words.", userName, title)

	default:
		system = "You are a helpful AI assistant for goal tracking."
		user = fmt.Sprintf("Help %s with their goals.", userName)
	}
	return system, user
}

func situationBlock(snap *insight.Snapshot) string {
	return fmt.Sprintf("Current situation:\n- Active tasks: %d\n- Backlog tasks: %d\n- Completed this week: %d\n- Current streak: %d days\n- Weekly completion rate: %.0f%%\n",
		len(snap.ActiveTasks), snap.BacklogCount, snap.CompletedThisWeek, snap.CurrentStreak, snap.WeeklyCompletionRate*100)
}

func activeTaskDetails(snap *insight.Snapshot) string {
	if len(snap.ActiveTasks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nActive tasks details:\n")
	for _, t := range snap.ActiveTasks {
		fmt.Fprintf(&b, "- %s\n  Progress: %d/%d steps\n", t.Title, t.CompletedSteps, t.TotalSteps)
		if t.DaysRemaining != nil {
			fmt.Fprintf(&b, "  Deadline: %d days remaining\n", *t.DaysRemaining)
		}
		fmt.Fprintf(&b, "  Priority: %s\n", t.Priority)
	}
	return b.String()
}

// fallbackMessage is served verbatim when generation fails. Always addresses
// the user by name and never errors.
func fallbackMessage(kind MessageKind, userName string) string {
	switch kind {
	case KindCheckIn, KindInactivity:
		return fmt.Sprintf("Hey %s! I couldn't reach your coach just now, but today is still a great day to move one task a single step forward. 💪", userName)
	case KindMotivation, KindDeadline:
		return fmt.Sprintf("Hey %s! I'm having trouble connecting right now, but keep up the great work on your goals! 💪", userName)
	case KindAnalysis, KindWeeklyReview:
		return fmt.Sprintf("Hey %s! Your detailed analysis isn't available right now, but your steady progress speaks for itself. Keep going!", userName)
	case KindCompletion:
		return fmt.Sprintf("Congratulations %s! 🎉 You finished it! Take a moment to enjoy the win before lining up the next goal.", userName)
	default:
		return fmt.Sprintf("Hey %s! Keep up the great work on your goals! 💪", userName)
	}
}
