package config

// Built-in keyword seeds for the Vietnamese Cookpad locale. Tier 1 holds
// the staple proteins and vegetables, tier 2 the pantry goods.

// DefaultTier1Seeds returns a copy of the tier 1 keyword list.
func DefaultTier1Seeds() []string {
	return append([]string(nil), defaultTier1Seeds...)
}

// DefaultTier2Seeds returns a copy of the tier 2 keyword list.
func DefaultTier2Seeds() []string {
	return append([]string(nil), defaultTier2Seeds...)
}

var defaultTier1Seeds = []string{
	"Ba chỉ bò", "Ba rọi heo", "Bò lúc lắc", "Bò viên", "Bạch tuộc",
	"Bắp bò", "Bắp heo", "Chân giò heo", "Chân gà", "Chả cá",
	"Cua đồng xay", "Cá basa", "Cá bạc má", "Cá chim", "Cá diêu hồng",
	"Cá hường", "Cá hồi", "Cá lóc", "Cá ngân", "Cá ngừ",
	"Cá nục", "Cá sòng", "Cá sặc", "Cá viên", "Cánh gà",
	"Cốt lết", "Hến", "Lòng Gà", "Mề gà", "Nghêu",
	"Nạc vai heo", "Nạm bò", "Râu mực", "Sò lông", "Sườn heo",
	"Sụn gà", "Sứa", "Thăn heo", "Thịt heo xay", "Thịt vụn bò",
	"Thịt đùi heo", "Tim gà", "Trứng cút", "Trứng gà", "Trứng vịt",
	"Tôm khô", "Tôm thẻ", "Tôm viên", "Tỏi gà", "Vịt",
	"Xương gà", "Xương heo", "Đuôi mực", "Đùi bò", "Đùi gà",
	"Đầu cá hồi", "Ếch", "Ốc bươu", "Ốc móng tay", "Ức cá basa",
	"Ức gà", "Bí", "Bông súng", "Bầu", "Bắp cải",
	"Cà chua", "Cà pháo", "Cà rốt", "Cà tím", "Cải bẹ",
	"Cải ngọt", "Cải ngồng", "Cải thìa", "Củ cải", "Củ dền",
	"Củ nghệ", "Củ sắn", "Dưa leo", "Hạt dẻ", "Khoai mỡ",
	"Khoai tây", "Khổ qua", "Me chua", "Mướp", "Nấm bào ngư xám",
	"Nấm hương", "Nấm kim châm", "Nấm linh chi", "Nấm mèo đen", "Nấm tuyết",
	"Nấm đông cô", "Nấm đùi gà", "Rau muống", "Rau má", "Rau mồng tơi",
	"Rau ngót", "Rau om", "Su su", "Trái bắp", "Xà lách",
	"Đậu bắp", "Đậu cove", "Đậu rồng",
}

var defaultTier2Seeds = []string{
	"Bánh phồng", "Bánh tráng", "Bánh đa", "Hạt sen", "Hạt é",
	"Mè", "Măng", "Phổ tai", "Rong biển", "Đậu nành",
	"Đậu phộng", "Đậu trắng", "Đậu xanh", "Đậu đen hạt", "Đậu đỏ",
}
