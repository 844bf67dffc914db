package triage

import "fmt"

// SystemPrompt frames the model as a conservative classifier.
const SystemPrompt = "You are an email classifier. Analyze emails objectively and return valid JSON only. " +
	"Default to MEDIUM priority unless clearly urgent or clearly unimportant."

const userPromptTemplate = `Analyze this email and extract key information.

Subject: %s
From: %s
Content: %s

Respond with JSON only:
{
  "summary": "2-3 sentence summary of the email's purpose and key points",
  "priority": "high|medium|low",
  "action": "specific action needed from recipient, or null",
  "dueDate": "YYYY-MM-DD HH:mm if there's a specific time, or YYYY-MM-DD if only date, otherwise null"
}

Priority guidelines:
- HIGH: Urgent deadlines (today/tomorrow), critical decisions needed, time-sensitive meetings
- MEDIUM: Standard work tasks, scheduled meetings, requests needing response within a week
- LOW: FYI updates, marketing, automated notifications, OTPs, receipts, newsletters

Due date guidelines:
- Set ONLY for: meetings, appointments, project deadlines, payment due dates
- DO NOT set for: OTP expiry, promotional offer ends, newsletter dates, transaction timestamps`

// BuildUserPrompt renders the per-message prompt. content must already be normalized.
func BuildUserPrompt(subject, sender, content string) string {
	return fmt.Sprintf(userPromptTemplate, subject, sender, content)
}
