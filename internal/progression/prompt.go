package progression

import (
	"fmt"

	"github.com/abhisek/coursewell/internal/lesson"
)

// Fixed learner-facing text.
const (
	CompletionMessage = "Congratulations! You have completed this chapter."
	CorrectPrefix     = "Correct! Great job."

	ExplainFallback  = "I seem to be having a little trouble thinking. Could you try again?"
	QuestionFallback = "Let's check your understanding with a question."
	HintFallback     = "Not quite. Take another look at what we covered and try again."

	noContentYet = "Let's review."
)

const tutorSystemPrompt = `You are a warm, patient tutor teaching one student through a lesson written by their teacher. Stick ONLY to the information you are given. Do not invent facts, analogies or examples that are not in the lesson.`

func buildExplainMessage(chunk string) string {
	return fmt.Sprintf("Your role is to teach the following text from a lesson plan in a natural, conversational way. Explain it comprehensively but stick ONLY to the information in the text. End by inviting the student to continue when they are ready. Here is the text: --- %s ---", chunk)
}

func buildFeedbackAndProceedMessage(chunk string) string {
	return fmt.Sprintf("The student just answered a question correctly. Your response should start with a positive confirmation (like 'Exactly!' or 'Great job!') and then seamlessly transition into teaching the following new concept. Here is the new concept: --- %s ---", chunk)
}

func buildMediaMessage(t lesson.MediaType, alt string) string {
	if t == lesson.MediaAudio {
		return fmt.Sprintf("An audio clip described as '%s' is now available to the student. Briefly invite them to listen to it and transition to the next piece of information.", alt)
	}
	return fmt.Sprintf("An image with the description '%s' has just been shown. Briefly call the student's attention to it and transition to the next piece of information.", alt)
}

func mediaFallback(t lesson.MediaType, alt string) string {
	if t == lesson.MediaAudio {
		return fmt.Sprintf("Have a listen to this recording: %s.", alt)
	}
	return fmt.Sprintf("Take a look at this image: %s.", alt)
}

func buildFramingMessage(question string) string {
	return fmt.Sprintf("You are about to ask the student the following question. Introduce it in one short, encouraging sentence. Do not repeat the question, answer it, or give hints. Question: --- %s ---", question)
}

func buildHintMessage(content string) string {
	return fmt.Sprintf("You are a Socratic tutor. The student answered incorrectly. The lesson text with the answer is: --- %s ---. Based ONLY on this text, provide a short, simple hint or a leading question to help them. Do not invent new analogies and do not reveal the answer.", content)
}
