package ai

// Имена схем, под которыми strict-формат регистрируется у провайдера
const (
	SchemaNameAnalystNote = "analyst_note"
	SchemaNameDecision    = "rebalance_decision"
)

// AnalystNoteSchema строгая схема ответа аналитика: комментарий + оценка 0-10
func AnalystNoteSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"comment": map[string]interface{}{
				"type":        "string",
				"description": "Краткий вывод аналитика по активу",
			},
			"score": map[string]interface{}{
				"type":        "number",
				"description": "Оценка сигнала от 0 (максимально негативно) до 10 (максимально позитивно)",
				"minimum":     0,
				"maximum":     10,
			},
		},
		"required":             []string{"comment", "score"},
		"additionalProperties": false,
	}
}

// DecisionSchema строгая схема финального решения: tagged union из трех вариантов.
// Вариант определяется набором полей, смешивание вариантов схемой запрещено.
func DecisionSchema() map[string]interface{} {
	return map[string]interface{}{
		"anyOf": []interface{}{
			// Ребалансировка не нужна
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"rebalance": map[string]interface{}{
						"type": "boolean",
						"enum": []interface{}{false},
					},
					"shortReport": map[string]interface{}{
						"type":        "string",
						"description": "Краткое обоснование решения",
					},
				},
				"required":             []string{"rebalance", "shortReport"},
				"additionalProperties": false,
			},
			// Ребалансировка с новой целевой аллокацией базового токена
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"rebalance": map[string]interface{}{
						"type": "boolean",
						"enum": []interface{}{true},
					},
					"newAllocation": map[string]interface{}{
						"type":        "number",
						"description": "Целевая доля базового токена в процентах",
						"minimum":     0,
						"maximum":     100,
					},
					"shortReport": map[string]interface{}{
						"type":        "string",
						"description": "Краткое обоснование решения",
					},
				},
				"required":             []string{"rebalance", "newAllocation", "shortReport"},
				"additionalProperties": false,
			},
			// Модель не смогла принять решение
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"error": map[string]interface{}{
						"type":        "string",
						"description": "Причина, по которой решение не принято",
					},
				},
				"required":             []string{"error"},
				"additionalProperties": false,
			},
		},
	}
}
