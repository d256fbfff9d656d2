package core

// Logger logs a message with optional args.
// expected args: error, map[string]interface{} (structured fields), user.User (the user concerned)
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
