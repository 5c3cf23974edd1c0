package orm

import "go.mongodb.org/mongo-driver/bson"

// CompileMongo turns a predicate tree into a bson.M filter document for the
// mongo-driver backend.
func CompileMongo(p Predicate) bson.M {
	switch p.Kind {
	case KindLeaf:
		if p.Op == OpIn {
			return bson.M{p.Column: bson.M{"$in": p.Value}}
		}
		op, ok := mongoOps[p.Op]
		if !ok {
			return bson.M{p.Column: p.Value}
		}
		return bson.M{p.Column: bson.M{op: p.Value}}
	case KindIsNull:
		return bson.M{p.Column: bson.M{"$exists": false}}
	case KindNotNull:
		return bson.M{p.Column: bson.M{"$exists": true, "$ne": nil}}
	case KindAnd:
		if len(p.Children) == 0 {
			return bson.M{}
		}
		parts := make([]bson.M, 0, len(p.Children))
		for _, c := range p.Children {
			parts = append(parts, CompileMongo(c))
		}
		return bson.M{"$and": parts}
	case KindOr:
		if len(p.Children) == 0 {
			return bson.M{}
		}
		parts := make([]bson.M, 0, len(p.Children))
		for _, c := range p.Children {
			parts = append(parts, CompileMongo(c))
		}
		return bson.M{"$or": parts}
	default:
		return bson.M{}
	}
}

var mongoOps = map[Op]string{
	OpEq:  "$eq",
	OpNeq: "$ne",
	OpGt:  "$gt",
	OpGte: "$gte",
	OpLt:  "$lt",
	OpLte: "$lte",
}
