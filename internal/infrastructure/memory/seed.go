package memory

import (
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
)

// DemoTenant はローカル実行用のテナントID
const DemoTenant = "demo"

// SeedDemo はローカル実行用にコート2面と標準プランを登録する。
// 08:00-23:00 に60分・90分・120分の公開料金と、90分のインストラクター料金を持つ
func SeedDemo(s *Store) {
	const plan = "demo-standard"
	s.AddPlan(tariff.Plan{ID: plan, TenantID: DemoTenant, Name: "標準"})
	s.SetTypeDefault(DemoTenant, "padel", plan)
	s.AddResource(Resource{ID: "demo-court-1", TenantID: DemoTenant, Type: "padel"})
	s.AddResource(Resource{ID: "demo-court-2", TenantID: DemoTenant, Type: "padel"})

	for _, r := range []struct {
		segment  tariff.Segment
		duration int
		price    int64
	}{
		{tariff.SegmentPublic, 60, 1000},
		{tariff.SegmentPublic, 90, 1400},
		{tariff.SegmentPublic, 120, 1800},
		{tariff.SegmentInstructor, 90, 1100},
	} {
		s.AddRule(tariff.Rule{
			PlanID:      plan,
			Segment:     r.segment,
			FromMin:     8 * 60,
			ToMin:       23 * 60,
			DurationMin: r.duration,
			Price:       r.price,
			Active:      true,
		})
	}
}
