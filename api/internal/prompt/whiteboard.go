package prompt

import (
	"encoding/json"
	"sort"
	"strings"
)

// Ask returns the short-answer prompt for a whiteboard question.
func Ask(question string) Prompt {
	return Prompt{System: askSystem, User: question}
}

const askSystem = `You are a helpful assistant that answers as briefly as possible.
If the answer fits in one or two words or numbers (for example the value of an expression or equation), give just that.
When asked to create a checklist for a topic, use markdown task items:
- [ ] Unchecked item
When asked to write code, enclose the answer in triple backticks.
Respond only with one JSON object:
{"result": "<short answer in markdown>"}`

// Calculate returns the prompt for solving the math drawn on a whiteboard image.
// vars are the values the user has assigned earlier; they are rendered with
// sorted keys so the prompt is stable for the same input.
func Calculate(vars map[string]string) Prompt {
	var b strings.Builder
	b.WriteString(calculateRules)
	b.WriteString("\nVariables assigned by the user so far: ")
	b.WriteString(varsJSON(vars))
	b.WriteString("\nIf the image uses one of these variables, substitute its value.\n\n")
	b.WriteString(calculateOutput)
	return Prompt{
		System: b.String(),
		User:   "Analyze the expression or drawing in this image and answer according to the rules.",
	}
}

func varsJSON(vars map[string]string) string {
	if len(vars) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(vars[k])
		b.Write(kb)
		b.WriteString(": ")
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.String()
}

const calculateRules = `You are given an image with mathematical expressions, equations or graphical problems, and you need to solve them.

Use the PEMDAS rule for expressions: Parentheses, Exponents, Multiplication and Division (left to right), Addition and Subtraction (left to right).
Q. 5 + 10 / 2  ->  (10 / 2) = 5, then 5 + 5 = 10.
Q. 2 + 3 + 5 * 4 - 8 / 2  ->  (5 * 4) = 20, (8 / 2) = 4, then (2 + 3) = 5, (5 + 20) = 25, (25 - 4) = 21.

Exactly one of these cases applies:
1. A simple expression such as 2 + 2, 3 * 4, 5 / 6 or 7 - 8:
   {"type": "simple_expression", "expression": "given expression", "result": "calculated answer"}
2. A set of equations or expressions with variables, e.g. x=3, y=2, 2x+y=?:
   {"type": "variable_expression", "expression": "given expression", "result": "calculated answer"}
3. A graphical math problem (colliding cars, trigonometry, the Pythagorean theorem, runs on a cricket wagon wheel, ...):
   {"type": "graphical_math_problem", "problem": "description of the problem", "result": "calculated answer"}
4. An abstract concept drawn in the image (love, hate, jealousy, patriotism, a historic war, invention, discovery, quote, ...):
   {"type": "abstract_concept", "description": "explanation of the drawing", "concept": "detected abstract concept"}
`

const calculateOutput = `Return the answer strictly as JSON: one object for one answer, or {"data": [ ... ]} for several.
Quote every key and value. No markdown, no text outside the JSON.`
