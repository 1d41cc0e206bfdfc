package models

// Стоимость единиц AI-работы в кредитах.
const (
	CreditCostChatCompletion  = 1  // один вызов текстовой модели
	CreditCostImageGeneration = 10 // генерация изображения одного сегмента
)

// FreeCredits выдаются при регистрации.
const FreeCredits = 5

// CreditPlan — тарифный план пополнения из биллингового вебхука.
type CreditPlan string

const (
	PlanThousand       CreditPlan = "thousandCredits"
	PlanTenThousand    CreditPlan = "tenThousandCredits"
	PlanThirtyThousand CreditPlan = "thirtyThousandCredits"
)

// Credits возвращает количество кредитов плана; 0 для неизвестного плана.
func (p CreditPlan) Credits() int {
	switch p {
	case PlanThousand:
		return 1000
	case PlanTenThousand:
		return 10000
	case PlanThirtyThousand:
		return 30000
	default:
		return 0
	}
}
