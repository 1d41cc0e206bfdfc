package service

// Системные промпты текстовой модели для этапов конвейера.
const (
	// GuidedStorySystemPrompt — генерация сценария озвучки по описанию.
	GuidedStorySystemPrompt = "You are a professional writer tasked with creating a short story for a voice over " +
		"based on a given description. The story should be a story that is 10,000 characters max length. " +
		"DO NOT TITLE ANY SEGMENT. JUST RETURN THE TEXT OF THE ENTIRE STORY. " +
		"THIS IS FOR A VOICE OVER, ONLY INCLUDE THE SPOKEN WORDS."

	// RefineScriptSystemPrompt — переработка готового сценария по инструкции.
	// Инструкция пользователя подставляется отдельным пользовательским сообщением
	// вместе со сценарием.
	RefineScriptSystemPrompt = "You are a professional script editor. You will receive a voice over script and " +
		"an instruction describing how to change it. Rewrite the script according to the instruction while " +
		"keeping its paragraph structure: paragraphs separated by blank lines. " +
		"RETURN ONLY THE FULL UPDATED SCRIPT, NO COMMENTARY."

	// ContextSystemPrompt — краткая стилевая выжимка всего сценария.
	// Выжимка передается в каждый запрос на промпт сегмента, чтобы кадры
	// одного раунда были выдержаны в едином стиле.
	ContextSystemPrompt = "You are summarizing a voice over script for an illustrator. " +
		"Describe the story's setting, era, mood and visual style in one or two sentences. " +
		"RETURN ONLY THE SUMMARY."
)

// SegmentPromptSystemPrompt строит системный промпт для синтеза промпта
// изображения одного сегмента с учетом общего контекста истории.
func SegmentPromptSystemPrompt(storyContext string) string {
	base := "You are generating an image prompt for one scene of an illustrated story. " +
		"You will receive the scene's narration text. Write a single vivid prompt for a text-to-image " +
		"model depicting this scene. Do not include any text or lettering in the image. " +
		"Respond with a JSON object of the form {\"prompt\": \"...\"}."
	if storyContext == "" {
		return base
	}
	return base + " Overall story context to keep every scene consistent: " + storyContext
}
