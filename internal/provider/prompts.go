package provider

import "fmt"

// The two prompts every vendor client sends. Keeping them identical across
// vendors means switching providers never changes translation behaviour.

func systemInstruction(targetLanguage string) string {
	return fmt.Sprintf("You are a translator. Translate the given text to %s.", targetLanguage)
}

func userPrompt(targetLanguage, text string) string {
	return fmt.Sprintf("Translate the following text to %s: \n\n%s", targetLanguage, text)
}
