package templates

// Builtin returns the ten seeded templates. They are inserted at startup
// when absent, matched by name and author.
func Builtin() []Template {
	return []Template{
		{
			Name:        "Text Summarization",
			Description: "Summarize a given text with specified length and focus",
			Category:    CategorySummarization,
			Template: `Please summarize the following text in approximately {max_words} words, focusing on {focus_area}.

Text to summarize:
{text}

Summary:`,
			Variables: []string{"text", "max_words", "focus_area"},
			Tags:      []string{"summarization", "text-processing", "content"},
			Metadata: map[string]interface{}{
				"difficulty": "beginner",
				"use_cases":  []string{"content creation", "research", "documentation"},
			},
		},
		{
			Name:        "Language Translation",
			Description: "Translate text from one language to another",
			Category:    CategoryTranslation,
			Template: `Translate the following text from {source_language} to {target_language}. Maintain the original tone and meaning.

Original text:
{text}

Translation:`,
			Variables: []string{"text", "source_language", "target_language"},
			Tags:      []string{"translation", "language", "localization"},
			Metadata: map[string]interface{}{
				"difficulty": "beginner",
				"use_cases":  []string{"localization", "communication", "content adaptation"},
			},
		},
		{
			Name:        "Question Answering",
			Description: "Answer questions based on provided context",
			Category:    CategoryQuestionAnswering,
			Template: `Based on the following context, please answer the question. If the answer cannot be found in the context, say "I cannot answer this question based on the provided context."

Context:
{context}

Question: {question}

Answer:`,
			Variables: []string{"context", "question"},
			Tags:      []string{"qa", "question-answering", "context-based"},
			Metadata: map[string]interface{}{
				"difficulty": "intermediate",
				"use_cases":  []string{"customer support", "research", "education"},
			},
		},
		{
			Name:        "Code Generation",
			Description: "Generate code in a specific programming language",
			Category:    CategoryCodeGeneration,
			Template: `Write a {language} function that {description}.

Requirements:
{requirements}

Please include:
- Proper error handling
- Clear variable names
- Comments explaining the logic
- Example usage

Code:`,
			Variables: []string{"language", "description", "requirements"},
			Tags:      []string{"code", "programming", "development"},
			Metadata: map[string]interface{}{
				"difficulty": "intermediate",
				"use_cases":  []string{"software development", "automation", "prototyping"},
			},
		},
		{
			Name:        "Text Classification",
			Description: "Classify text into predefined categories",
			Category:    CategoryClassification,
			Template: `Classify the following text into one of these categories: {categories}.

Text to classify:
{text}

Provide your classification and a brief explanation for your choice.

Classification:`,
			Variables: []string{"text", "categories"},
			Tags:      []string{"classification", "categorization", "analysis"},
			Metadata: map[string]interface{}{
				"difficulty": "intermediate",
				"use_cases":  []string{"content moderation", "data organization", "sentiment analysis"},
			},
		},
		{
			Name:        "Creative Writing",
			Description: "Generate creative content based on prompts",
			Category:    CategoryCreativeWriting,
			Template: `Write a {genre} story about {topic}. The story should be approximately {length} words and include the following elements:

Setting: {setting}
Main character: {character}
Conflict: {conflict}

Story:`,
			Variables: []string{"genre", "topic", "length", "setting", "character", "conflict"},
			Tags:      []string{"creative", "writing", "storytelling"},
			Metadata: map[string]interface{}{
				"difficulty": "advanced",
				"use_cases":  []string{"content creation", "entertainment", "education"},
			},
		},
		{
			Name:        "Data Extraction",
			Description: "Extract specific information from unstructured text",
			Category:    CategoryExtraction,
			Template: `Extract the following information from the text below and format it as JSON:

Information to extract: {fields_to_extract}

Text:
{text}

Extracted information (JSON format):`,
			Variables: []string{"text", "fields_to_extract"},
			Tags:      []string{"extraction", "data-processing", "json"},
			Metadata: map[string]interface{}{
				"difficulty": "intermediate",
				"use_cases":  []string{"data processing", "information extraction", "automation"},
			},
		},
		{
			Name:        "Email Composer",
			Description: "Compose professional emails",
			Category:    CategoryTextGeneration,
			Template: `Compose a {tone} email with the following details:

To: {recipient}
Subject: {subject}
Purpose: {purpose}
Key points to include: {key_points}

Email:`,
			Variables: []string{"tone", "recipient", "subject", "purpose", "key_points"},
			Tags:      []string{"email", "communication", "professional"},
			Metadata: map[string]interface{}{
				"difficulty": "beginner",
				"use_cases":  []string{"business communication", "customer service", "marketing"},
			},
		},
		{
			Name:        "Meeting Notes Analyzer",
			Description: "Analyze meeting notes and extract action items",
			Category:    CategoryAnalysis,
			Template: `Analyze the following meeting notes and extract:

1. Key decisions made
2. Action items with assigned owners
3. Next steps
4. Important deadlines

Meeting Notes:
{meeting_notes}

Analysis:

**Key Decisions:**

**Action Items:**

**Next Steps:**

**Important Deadlines:**`,
			Variables: []string{"meeting_notes"},
			Tags:      []string{"meeting", "analysis", "action-items"},
			Metadata: map[string]interface{}{
				"difficulty": "intermediate",
				"use_cases":  []string{"project management", "team coordination", "productivity"},
			},
		},
		{
			Name:        "Product Description Generator",
			Description: "Generate compelling product descriptions for e-commerce",
			Category:    CategoryTextGeneration,
			Template: `Create a compelling product description for the following product:

Product Name: {product_name}
Category: {category}
Key Features: {features}
Target Audience: {target_audience}
Tone: {tone}

The description should be {length} and highlight the benefits, not just features.

Product Description:`,
			Variables: []string{"product_name", "category", "features", "target_audience", "tone", "length"},
			Tags:      []string{"product", "marketing", "e-commerce", "copywriting"},
			Metadata: map[string]interface{}{
				"difficulty": "intermediate",
				"use_cases":  []string{"e-commerce", "marketing", "content creation"},
			},
		},
	}
}
