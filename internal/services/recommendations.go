package services

import (
	"github.com/shopspring/decimal"

	"github.com/heliowatch/heliowatch-go/internal/models"
)

// RecommendationsFor returns the ranked remedial actions for an anomaly
// type. The catalogue is fixed; ordering by priority is part of the
// contract.
func RecommendationsFor(t models.AnomalyType) []models.Recommendation {
	switch t {
	case models.AnomalyProductionDrop:
		return []models.Recommendation{
			{
				Action:        "Inspect panels for soiling, shading or snow cover",
				Priority:      1,
				Category:      "maintenance",
				EstimatedCost: decimal.NewFromInt(150),
				EstimatedTime: "2h",
				RequiredSkill: "technician",
			},
			{
				Action:        "Verify string connections and fuses",
				Priority:      2,
				Category:      "inspection",
				EstimatedCost: decimal.NewFromInt(250),
				EstimatedTime: "4h",
				RequiredSkill: "electrician",
			},
		}
	case models.AnomalyEfficiencyLoss:
		return []models.Recommendation{
			{
				Action:        "Schedule panel cleaning",
				Priority:      1,
				Category:      "maintenance",
				EstimatedCost: decimal.NewFromInt(200),
				EstimatedTime: "3h",
				RequiredSkill: "technician",
			},
			{
				Action:        "Check inverter conversion efficiency against datasheet",
				Priority:      2,
				Category:      "inspection",
				EstimatedCost: decimal.NewFromInt(100),
				EstimatedTime: "1h",
				RequiredSkill: "technician",
			},
		}
	case models.AnomalyEquipmentMalfunction:
		return []models.Recommendation{
			{
				Action:        "Dispatch electrician to inspect inverter and grid connection",
				Priority:      1,
				Category:      "repair",
				EstimatedCost: decimal.NewFromInt(500),
				EstimatedTime: "4h",
				RequiredSkill: "electrician",
			},
			{
				Action:        "Review inverter fault logs",
				Priority:      2,
				Category:      "inspection",
				EstimatedCost: decimal.NewFromInt(50),
				EstimatedTime: "30m",
				RequiredSkill: "operator",
			},
		}
	case models.AnomalyWeatherInconsistency:
		return []models.Recommendation{
			{
				Action:        "Cross-check on-site irradiance sensor against weather feed",
				Priority:      1,
				Category:      "inspection",
				EstimatedCost: decimal.NewFromInt(100),
				EstimatedTime: "1h",
				RequiredSkill: "technician",
			},
			{
				Action:        "Inspect panels for partial shading or damage",
				Priority:      2,
				Category:      "maintenance",
				EstimatedCost: decimal.NewFromInt(150),
				EstimatedTime: "2h",
				RequiredSkill: "technician",
			},
		}
	case models.AnomalyPerformanceDegradation:
		return []models.Recommendation{
			{
				Action:        "Run IV-curve trace on affected strings",
				Priority:      1,
				Category:      "diagnostics",
				EstimatedCost: decimal.NewFromInt(400),
				EstimatedTime: "1d",
				RequiredSkill: "specialist",
			},
			{
				Action:        "Compare degradation rate against warranty terms",
				Priority:      2,
				Category:      "administrative",
				EstimatedCost: decimal.Zero,
				EstimatedTime: "2h",
				RequiredSkill: "operator",
			},
		}
	case models.AnomalyCommunicationLoss:
		return []models.Recommendation{
			{
				Action:        "Check data logger power and network link",
				Priority:      1,
				Category:      "repair",
				EstimatedCost: decimal.NewFromInt(80),
				EstimatedTime: "1h",
				RequiredSkill: "technician",
			},
		}
	case models.AnomalySeasonalDeviation:
		return []models.Recommendation{
			{
				Action:        "Compare output against nearby systems for the same period",
				Priority:      1,
				Category:      "inspection",
				EstimatedCost: decimal.Zero,
				EstimatedTime: "1h",
				RequiredSkill: "operator",
			},
		}
	case models.AnomalyDataQuality:
		return []models.Recommendation{
			{
				Action:        "Recalibrate or replace the affected sensor",
				Priority:      1,
				Category:      "repair",
				EstimatedCost: decimal.NewFromInt(300),
				EstimatedTime: "half day",
				RequiredSkill: "technician",
			},
			{
				Action:        "Quarantine readings from the affected channel",
				Priority:      2,
				Category:      "administrative",
				EstimatedCost: decimal.Zero,
				EstimatedTime: "30m",
				RequiredSkill: "operator",
			},
		}
	default:
		return nil
	}
}
