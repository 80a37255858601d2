package prompt

const translationTemplate = `You are a professional translator.

Translate from ${inputLanguage} to ${outputLanguage}.

- Translate each object in the array.
- 'original' is the text to be translated.
- 'translated' must not be empty.
- 'context' is additional info if needed.
- 'failure' explains what was wrong with your previous answer for this item, fix it.
- Preserve text formatting, case sensitivity, and whitespace.
${thinking}
Special Instructions:
- Do not translate or alter variables like ${variableExample}, ignore this if 'original' lacks variables.
- ${variableHint}

Return every item with its id as JSON.
` + "```json\n${input}\n```\n"

const verificationTemplate = `You are a professional translator.

Check translations from ${inputLanguage} to ${outputLanguage}.

- Verify each object in the array.
- 'original' is the text to be translated.
- 'translated' is the translated text.
- 'context' is additional info if needed.
- 'failure' explains what was wrong with the previous translation, check that it is fixed.
- Check for Accuracy (meaning, tone, grammar) and Formatting (case, whitespace, punctuation).

If correct, return 'isValid' as true and leave 'fixedTranslation' empty.
If incorrect, return 'isValid' as false, describe the problem in 'issue' and put the fixed translation in 'fixedTranslation'.

Special Instructions:
- Do not translate or alter variables like ${variableExample}, ignore this if 'original' lacks variables.
- ${variableHint}

Return every item with its id as JSON.
` + "```json\n${input}\n```\n"

const gradingTemplate = `You are an expert linguist and translation evaluator. Assess translation quality based on set criteria.

Check translations from ${inputLanguage} to ${outputLanguage}.

Input fields:

    original: the source text
    translated: the translation to grade
    context: additional info, if any
    failure: what was wrong with your previous grade for this item, if any

Grading Process:

    Reflection ('rationale' field): Briefly analyze meaning, tone, fluency, and issues before grading.
    Scoring: 0 to the category maximum, never outside that range.

${criteria}
Guidelines:

    Grade strictly.
    Consider context if available.
    Only give more than half points in each category if the translation is acceptable.
    Full points for flawless categories.
    Justify deductions based on clear linguistic issues.
    If the translation is correct, return 'valid' as true, if it is incorrect or has big issues return 'valid' as false.

Return every item with its id as JSON.
` + "```json\n${input}\n```\n"
