package repository

// Models lists every GORM model owned or read by this service, in dependency
// order, for AutoMigrate in development and tests.
func Models() []any {
	return []any{
		&UserModel{},
		&PromotionModel{},
		&PromotionAssignmentModel{},
		&DiscountModel{},
		&CouponModel{},
		&CouponAssignmentModel{},
	}
}
