package coordinator

import "regexp"

var (
	cancelRe  = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:cancel|reset|start\s+over|never\s*mind|forget\s+it|abort|discard|stop)(?:\s+(?:it|this|that|the\s+return|everything))?(?:\s+please)?[\s.!]*$`)
	confirmRe = regexp.MustCompile(`(?i)^\s*(?:yes|y|yeah|yep|yup|confirm|confirmed|ok|okay|sure|correct|save|save\s+it|retry|try\s+again|go\s+ahead|looks\s+good)(?:\s+please)?[\s.!]*$`)
	returnRe  = regexp.MustCompile(`(?i)\b(?:return|returning|refund|send\s+(?:it\s+)?back|sending\s+(?:it\s+)?back|exchange)\b`)
	declineRe = regexp.MustCompile(`(?i)^\s*(?:no|n|nope|don'?t\s+save(?:\s+it)?|do\s+not\s+save(?:\s+it)?)[\s.!]*$`)
)

func isCancel(s string) bool        { return cancelRe.MatchString(s) }
func isConfirm(s string) bool       { return confirmRe.MatchString(s) }
func isDecline(s string) bool       { return declineRe.MatchString(s) }
func isReturnRequest(s string) bool { return returnRe.MatchString(s) }
