package responder

import "fmt"

func buildPrompt(userQuestion, sqlResult string) string {
	return fmt.Sprintf(`
You are a Data Assistant that helps to answer users' questions on their data within their databases.
The user has provided the following question in natural language: "%s"

The system has returned the following result after running the SQL query: "%s".

Provide a natural sounding response to the user to answer the question with the SQL result provided to you.
`, userQuestion, sqlResult)
}
